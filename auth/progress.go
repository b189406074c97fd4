package auth

import "context"

// Step is a stage of a sign-in or sign-up.
type Step int

const (
	AuthorizingWithProvider Step = iota + 1
	CreatingOrRetrievingUser
	RequestingUserCredential
	CreatingUserCredential
	ValidatingUserCredential
	FinalizingCredential
	Signing
	FinalizingSession
	RetrievingUser
	RegisteringUser
)

var stepNames = map[Step]string{
	AuthorizingWithProvider:  "authorizing_with_provider",
	CreatingOrRetrievingUser: "creating_or_retrieving_user",
	RequestingUserCredential: "requesting_user_credential",
	CreatingUserCredential:   "creating_user_credential",
	ValidatingUserCredential: "validating_user_credential",
	FinalizingCredential:     "finalizing_credential",
	Signing:                  "signing",
	FinalizingSession:        "finalizing_session",
	RetrievingUser:           "retrieving_user",
	RegisteringUser:          "registering_user",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

// State is where a step stands.
type State string

const (
	InProgress State = "in_progress"
	Success    State = "success"
	Failed     State = "error"
)

// Progress reports a step transition. Err is set when State is Failed.
type Progress struct {
	Step  Step
	State State
	Err   error
}

// ProgressFunc receives progress reports. It is called synchronously and
// must not block.
type ProgressFunc func(Progress)

// runStep reports step as in progress, runs fn and reports its outcome.
func runStep[T any](ctx context.Context, report ProgressFunc, step Step, fn func(ctx context.Context) (T, error)) (T, error) {
	if report == nil {
		report = func(Progress) {}
	}
	report(Progress{Step: step, State: InProgress})
	v, err := fn(ctx)
	if err != nil {
		report(Progress{Step: step, State: Failed, Err: err})
		var zero T
		return zero, err
	}
	report(Progress{Step: step, State: Success})
	return v, nil
}
