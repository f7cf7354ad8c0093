// Package seed defines the capabilities the agent ships with. They use
// the same trusted surface as synthesized capabilities but are written
// in Go and survive a baseline reset.
package seed

import (
	"context"
	"fmt"
	"net/http"

	"github.com/voxloop/voxloop/internal/registry"
	"github.com/voxloop/voxloop/internal/synth"
)

// Register installs the seed capabilities into reg. Call once at startup.
func Register(reg *registry.Registry, sc synth.Context) {
	reg.Register(sendMessage(sc))
	reg.Register(notifyOperator(sc))
	reg.Register(lookupHTTP(sc))
}

func sendMessage(sc synth.Context) registry.Definition {
	return registry.Definition{
		Name:        "send_message",
		Description: "Send a text message to a phone number or channel.",
		Origin:      registry.OriginSeed,
		Parameters: []registry.Parameter{
			{Name: "to", Type: "string", Description: "recipient number or channel", Required: true},
			{Name: "message", Type: "string", Description: "message body", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			to, err := stringArg(args, "to")
			if err != nil {
				return "", err
			}
			msg, err := stringArg(args, "message")
			if err != nil {
				return "", err
			}
			if err := sc.SendMessage(ctx, to, msg); err != nil {
				return "", err
			}
			return "message sent to " + to, nil
		},
	}
}

func notifyOperator(sc synth.Context) registry.Definition {
	return registry.Definition{
		Name:        "notify_operator",
		Description: "Alert the human operator with a message.",
		Origin:      registry.OriginSeed,
		Parameters: []registry.Parameter{
			{Name: "message", Type: "string", Description: "what to tell the operator", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			msg, err := stringArg(args, "message")
			if err != nil {
				return "", err
			}
			if err := sc.NotifyOperator(ctx, msg); err != nil {
				return "", err
			}
			return "operator notified", nil
		},
	}
}

func lookupHTTP(sc synth.Context) registry.Definition {
	return registry.Definition{
		Name:        "lookup_http",
		Description: "Fetch a URL over HTTP GET and return the response body.",
		Origin:      registry.OriginSeed,
		Parameters: []registry.Parameter{
			{Name: "url", Type: "string", Description: "URL to fetch", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			url, err := stringArg(args, "url")
			if err != nil {
				return "", err
			}
			return sc.HTTPCall(ctx, http.MethodGet, url, nil, "")
		},
	}
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", name)
	}
	return s, nil
}
