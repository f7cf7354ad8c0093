// Package pipeline is the self-improvement orchestrator: it turns one
// unsatisfactory interaction outcome into a validated, applied set of
// behavioral and capability changes, logging every step along the way.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/voxloop/voxloop/internal/automation"
	"github.com/voxloop/voxloop/internal/events"
	"github.com/voxloop/voxloop/internal/history"
	"github.com/voxloop/voxloop/internal/metrics"
	"github.com/voxloop/voxloop/internal/reasoning"
	"github.com/voxloop/voxloop/internal/registry"
	"github.com/voxloop/voxloop/internal/synth"
	"github.com/voxloop/voxloop/internal/tuning"
	"github.com/voxloop/voxloop/internal/voice"
)

// VoiceProvider is the telephony/session provider slice the pipeline uses.
type VoiceProvider interface {
	GetOutcome(ctx context.Context, id string) (*voice.Outcome, error)
	GetProfileRaw(ctx context.Context, id string) (map[string]any, error)
	StartCall(ctx context.Context, profileID, contact string) (string, error)
}

type Tuner interface {
	Apply(ctx context.Context, profileID string, changes tuning.Changes) error
}

type Analyzer interface {
	Analyze(ctx context.Context, transcript string, profile map[string]any,
		caps []registry.Definition, autos []automation.Deployment) (*reasoning.ChangeSet, error)
}

type Deployer interface {
	Configured() bool
	Deploy(ctx context.Context, spec automation.Spec) (automation.Deployment, error)
	List(ctx context.Context) ([]automation.Deployment, error)
}

type Messenger interface {
	SendMessage(ctx context.Context, to, text string) error
	NotifyOperator(ctx context.Context, text string) error
}

type Synthesizer interface {
	Compile(spec synth.CapabilitySpec) (registry.Definition, error)
}

// Deps wires the pipeline. All fields except Events are required.
type Deps struct {
	Voice     VoiceProvider
	Tuner     Tuner
	Registry  *registry.Registry
	Synth     Synthesizer
	Deployer  Deployer
	Index     *automation.Index
	Gateway   Analyzer
	Messenger Messenger
	History   *history.Store
	Metrics   *metrics.Metrics
	Events    *events.Broker

	ProfileID   string
	SettleDelay time.Duration

	// Sleep and Now are injectable for tests; nil means real time.
	Sleep func(time.Duration)
	Now   func() time.Time
}

type Pipeline struct {
	deps Deps
}

func New(deps Deps) *Pipeline {
	if deps.Sleep == nil {
		deps.Sleep = time.Sleep
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{deps: deps}
}

// Trigger starts one run: either an outcome id (the pipeline fetches the
// transcript) or a raw transcript directly.
type Trigger struct {
	ProfileID  string
	OutcomeID  string
	Transcript string
	Contact    string
}

type runState struct {
	runID   string
	profile string
	log     []history.Step
}

func (p *Pipeline) step(rs *runState, name string, outcome history.StepOutcome, detail string) {
	entry := history.Step{Name: name, Outcome: outcome, Detail: detail, At: p.deps.Now()}
	rs.log = append(rs.log, entry)
	log.Printf("pipeline: [%s] %s: %s %s", rs.runID, name, outcome, detail)
	if outcome == history.StepError && p.deps.Metrics != nil {
		p.deps.Metrics.StepErrorsTotal.WithLabelValues(name).Inc()
	}
	if p.deps.Events != nil {
		p.deps.Events.Publish(events.Event{
			RunID:   rs.runID,
			Profile: rs.profile,
			Step:    name,
			Outcome: string(outcome),
			Detail:  detail,
			At:      entry.At,
		})
	}
}

// Run executes the improvement pipeline for one trigger. It returns the
// persisted record on COMPLETE; on ABORTED (outcome or profile fetch
// failed) it returns the triggering error and persists nothing.
func (p *Pipeline) Run(ctx context.Context, trig Trigger) (*history.Record, error) {
	profileID := trig.ProfileID
	if profileID == "" {
		profileID = p.deps.ProfileID
	}
	rs := &runState{runID: uuid.NewString(), profile: profileID}

	// 1. fetch-outcome (fatal)
	outcome, err := p.fetchOutcome(ctx, rs, trig)
	if err != nil {
		p.abort(rs)
		return nil, err
	}
	contact := trig.Contact
	if contact == "" {
		contact = outcome.Contact()
	}

	// 2. fetch-profile (fatal)
	before, err := p.deps.Voice.GetProfileRaw(ctx, profileID)
	if err != nil {
		p.step(rs, StepFetchProfile, history.StepError, err.Error())
		p.abort(rs)
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	p.step(rs, StepFetchProfile, history.StepOK, profileID)

	// 3. enumerate-capabilities (informational)
	caps := p.deps.Registry.List()
	autos := p.enumerateAutomations(ctx)
	p.step(rs, StepEnumerate, history.StepOK,
		fmt.Sprintf("%d capabilities, %d automations", len(caps), len(autos)))

	// 4. invoke-reasoning (fatal on transport failure; parse failures
	// become a safe no-op change set inside the gateway)
	cs, err := p.deps.Gateway.Analyze(ctx, outcome.Transcript, before, caps, autos)
	if err != nil {
		p.step(rs, StepInvokeReasoning, history.StepError, err.Error())
		p.abort(rs)
		return nil, fmt.Errorf("invoke reasoning: %w", err)
	}
	p.step(rs, StepInvokeReasoning, history.StepOK,
		fmt.Sprintf("%d failures, %d changes", len(cs.Failures), len(cs.Changes)))

	rec := history.Record{
		ID:            rs.runID,
		OutcomeID:     outcome.ID,
		Contact:       contact,
		CreatedAt:     p.deps.Now(),
		Failures:      cs.Failures,
		Changes:       cs.Changes,
		ProfileBefore: before,
		RawReasoning:  cs.Raw,
	}

	// 5. apply-configuration-changes (best-effort)
	p.applyConfig(ctx, rs, profileID, cs.ConfigChanges)

	// 6. synthesize-capabilities (per item, best-effort)
	p.synthesizeAll(ctx, rs, &rec, cs.NewCapabilities)

	// 7. deploy-automations (per item, best-effort; mints the wiring
	// capability on success)
	p.deployAll(ctx, rs, &rec, cs)

	// 8. request-missing-resources (best-effort fan-out)
	p.requestResources(ctx, rs, cs.ResourceRequests)

	// 9. persist-record (always runs once steps 1-2 succeeded)
	if after, err := p.deps.Voice.GetProfileRaw(ctx, profileID); err == nil {
		rec.ProfileAfter = after
	} else {
		log.Printf("pipeline: [%s] post-run profile read failed: %v", rs.runID, err)
	}
	rec.CallbackTriggered = contact != ""
	rec.Steps = append([]history.Step(nil), rs.log...)
	if err := p.deps.History.Append(rec); err != nil {
		p.step(rs, StepPersistRecord, history.StepError, err.Error())
	} else {
		p.step(rs, StepPersistRecord, history.StepOK, rec.ID)
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.RunsTotal.WithLabelValues("complete").Inc()
	}

	// 10. notify-operator-summary (best-effort)
	if err := p.deps.Messenger.NotifyOperator(ctx, summarize(&rec)); err != nil {
		p.step(rs, StepNotifySummary, history.StepError, err.Error())
	} else {
		p.step(rs, StepNotifySummary, history.StepOK, "")
	}

	// 11. trigger-callback (only with a contact; settle first so the
	// provider picks up the new configuration)
	p.callback(ctx, rs, &rec, profileID, contact)

	// Refresh the stored record with the completed step log.
	rec.Steps = append([]history.Step(nil), rs.log...)
	if err := p.deps.History.Update(rec); err != nil {
		log.Printf("pipeline: [%s] step log update failed: %v", rs.runID, err)
	}
	return &rec, nil
}

func (p *Pipeline) fetchOutcome(ctx context.Context, rs *runState, trig Trigger) (*voice.Outcome, error) {
	if trig.Transcript != "" {
		id := trig.OutcomeID
		if id == "" {
			id = "manual-" + rs.runID[:8]
		}
		p.step(rs, StepFetchOutcome, history.StepOK, "using provided transcript")
		return &voice.Outcome{
			ID:         id,
			Transcript: trig.Transcript,
			Customer:   voice.Customer{Number: trig.Contact},
		}, nil
	}
	outcome, err := p.deps.Voice.GetOutcome(ctx, trig.OutcomeID)
	if err != nil {
		p.step(rs, StepFetchOutcome, history.StepError, err.Error())
		return nil, fmt.Errorf("fetch outcome: %w", err)
	}
	p.step(rs, StepFetchOutcome, history.StepOK, outcome.EndedReason)
	return outcome, nil
}

func (p *Pipeline) abort(rs *runState) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.RunsTotal.WithLabelValues("aborted").Inc()
	}
}

func (p *Pipeline) enumerateAutomations(ctx context.Context) []automation.Deployment {
	if p.deps.Deployer.Configured() {
		if listed, err := p.deps.Deployer.List(ctx); err == nil {
			return listed
		}
	}
	return p.deps.Index.List()
}

func (p *Pipeline) applyConfig(ctx context.Context, rs *runState, profileID string, changes tuning.Changes) {
	if changes.Empty() {
		p.step(rs, StepApplyConfig, history.StepSkipped, "no configuration changes requested")
		return
	}
	if err := p.deps.Tuner.Apply(ctx, profileID, changes); err != nil {
		p.step(rs, StepApplyConfig, history.StepError, err.Error())
		return
	}
	p.step(rs, StepApplyConfig, history.StepOK, "")
}

func (p *Pipeline) synthesizeAll(ctx context.Context, rs *runState, rec *history.Record, specs []synth.CapabilitySpec) {
	if len(specs) == 0 {
		p.step(rs, StepSynthesize, history.StepSkipped, "no capabilities requested")
		return
	}
	for _, spec := range specs {
		p.synthesizeOne(ctx, rs, rec, spec)
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.SynthesizedCaps.Set(float64(len(p.deps.Registry.ListSynthesized())))
	}
}

func (p *Pipeline) synthesizeOne(ctx context.Context, rs *runState, rec *history.Record, spec synth.CapabilitySpec) {
	def, err := p.deps.Synth.Compile(spec)
	if err != nil {
		p.step(rs, StepSynthesize, history.StepError, fmt.Sprintf("%s: %v", spec.Name, err))
		return
	}
	p.deps.Registry.Register(def)
	rec.CapabilitiesCreated = append(rec.CapabilitiesCreated, def.Name)
	p.step(rs, StepSynthesize, history.StepOK, def.Name)
	p.smokeTest(ctx, rs, def)
}

// smokeTest invokes a freshly synthesized capability once with synthetic
// arguments. A failure is logged only: the capability stays registered
// and callable in future interactions.
func (p *Pipeline) smokeTest(ctx context.Context, rs *runState, def registry.Definition) {
	args := synth.SmokeArgs(def.Parameters)
	if _, err := p.deps.Registry.Invoke(ctx, def.Name, args); err != nil {
		p.step(rs, StepSmokeTest, history.StepError,
			fmt.Sprintf("%s: %v (capability stays registered)", def.Name, err))
		return
	}
	p.step(rs, StepSmokeTest, history.StepOK, def.Name)
}

func (p *Pipeline) deployAll(ctx context.Context, rs *runState, rec *history.Record, cs *reasoning.ChangeSet) {
	if len(cs.NewAutomations) == 0 {
		p.step(rs, StepDeploy, history.StepSkipped, "no automations requested")
		return
	}
	if !p.deps.Deployer.Configured() {
		p.step(rs, StepDeploy, history.StepSkipped, "automation platform not configured")
		cs.ResourceRequests = append(cs.ResourceRequests,
			"automation platform credentials (base URL and API key)")
		return
	}
	for _, spec := range cs.NewAutomations {
		dep, err := p.deps.Deployer.Deploy(ctx, spec)
		if err != nil {
			p.step(rs, StepDeploy, history.StepError, fmt.Sprintf("%s: %v", spec.Name, err))
			continue
		}
		p.deps.Index.Add(dep)
		if p.deps.Metrics != nil {
			p.deps.Metrics.DeployedAutos.Inc()
		}
		rec.AutomationsDeployed = append(rec.AutomationsDeployed, history.DeployedRef{
			Name:        dep.Name,
			ID:          dep.ID,
			EndpointURL: dep.EndpointURL,
		})
		p.step(rs, StepDeploy, history.StepOK, fmt.Sprintf("%s -> %s", dep.Name, dep.EndpointURL))

		wiring := synth.WiringSpec(
			wiringName(spec.Name),
			fmt.Sprintf("Sends an addressed payload through the %q automation.", spec.Name),
			dep.EndpointURL,
		)
		p.synthesizeOne(ctx, rs, rec, wiring)
	}
}

func (p *Pipeline) requestResources(ctx context.Context, rs *runState, requests []string) {
	if len(requests) == 0 {
		p.step(rs, StepRequestRes, history.StepSkipped, "nothing requested")
		return
	}
	for _, req := range requests {
		if err := p.deps.Messenger.NotifyOperator(ctx, "resource needed: "+req); err != nil {
			log.Printf("pipeline: [%s] resource request notify failed: %v", rs.runID, err)
		}
	}
	p.step(rs, StepRequestRes, history.StepOK, fmt.Sprintf("%d requests", len(requests)))
}

func (p *Pipeline) callback(ctx context.Context, rs *runState, rec *history.Record, profileID, contact string) {
	if contact == "" {
		p.step(rs, StepTriggerCallback, history.StepSkipped, "no contact address")
		return
	}
	p.deps.Sleep(p.deps.SettleDelay)
	callID, err := p.deps.Voice.StartCall(ctx, profileID, contact)
	if err != nil {
		rec.CallbackTriggered = false
		p.step(rs, StepTriggerCallback, history.StepError, err.Error())
		if nerr := p.deps.Messenger.NotifyOperator(ctx,
			fmt.Sprintf("callback to %s failed: %v", contact, err)); nerr != nil {
			log.Printf("pipeline: [%s] callback failure notify failed: %v", rs.runID, nerr)
		}
		return
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.CallbacksTotal.Inc()
	}
	p.step(rs, StepTriggerCallback, history.StepOK, callID)
}

func wiringName(automationName string) string {
	return "run_" + slug(automationName)
}

func slug(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		default:
			if len(out) > 0 && out[len(out)-1] != '_' {
				out = append(out, '_')
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == '_' {
		out = out[:len(out)-1]
	}
	return string(out)
}
