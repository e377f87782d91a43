package bridge

// Caller performs a synchronous outbound call into the native SDK. Arguments
// are strings, integers, float64s, bools, or nil; structured payloads are
// passed pre-encoded as JSON strings. The result is the native return value
// as text (JSON for structured results, empty when there is none).
type Caller interface {
	Call(method string, args ...any) (string, error)
}

// Platform is the capability a native SDK adapter provides to a [Bridge].
type Platform interface {
	Caller

	// Listen installs the receiver for inbound notification lines. The
	// platform may invoke it from any goroutine. A nil receiver detaches.
	Listen(receiver func(line string))
}

// Inbox receives every inbound line after routing.
type Inbox interface {
	HandleMessage(line string)
}

// Outbound method names understood by native adapters.
const (
	MethodDefineVar                      = "defineVar"
	MethodGetVariableValue               = "getVariableValue"
	MethodDefineAction                   = "defineAction"
	MethodOnAction                       = "onAction"
	MethodStart                          = "start"
	MethodHasStarted                     = "hasStarted"
	MethodForceContentUpdate             = "forceContentUpdate"
	MethodForceContentUpdateWithCallback = "forceContentUpdateWithCallback"
	MethodCreateActionContextForID       = "createActionContextForId"
	MethodTriggerAction                  = "triggerAction"
	MethodVars                           = "vars"
	MethodVariants                       = "variants"
	MethodMessageMetadata                = "messageMetadata"
	MethodObjectForKeyPath               = "objectForKeyPath"
	MethodTrack                          = "track"
	MethodTrackPurchase                  = "trackPurchase"
	MethodAdvanceTo                      = "advanceTo"
	MethodSetUserAttributes              = "setUserAttributes"
	MethodPauseState                     = "pauseState"
	MethodResumeState                    = "resumeState"
	MethodSetDeviceID                    = "setDeviceId"
	MethodGetDeviceID                    = "getDeviceId"
	MethodGetUserID                      = "getUserId"

	MethodContextStringNamed           = "actionContext.getStringNamed"
	MethodContextNumberNamed           = "actionContext.getNumberNamed"
	MethodContextBoolNamed             = "actionContext.getBoolNamed"
	MethodContextObjectNamed           = "actionContext.getObjectNamed"
	MethodContextRunActionNamed        = "actionContext.runActionNamed"
	MethodContextRunTrackedActionNamed = "actionContext.runTrackedActionNamed"
	MethodContextTrack                 = "actionContext.track"
	MethodContextDismissed             = "actionContext.dismissed"
)
