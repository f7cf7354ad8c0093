package pipeline

// Step names, in execution order. fetch-outcome and fetch-profile are
// fatal on failure; everything after invoke-reasoning is best-effort.
const (
	StepFetchOutcome    = "fetch-outcome"
	StepFetchProfile    = "fetch-profile"
	StepEnumerate       = "enumerate-capabilities"
	StepInvokeReasoning = "invoke-reasoning"
	StepApplyConfig     = "apply-configuration-changes"
	StepSynthesize      = "synthesize-capabilities"
	StepSmokeTest       = "smoke-test"
	StepDeploy          = "deploy-automations"
	StepRequestRes      = "request-missing-resources"
	StepPersistRecord   = "persist-record"
	StepNotifySummary   = "notify-operator-summary"
	StepTriggerCallback = "trigger-callback"
)
