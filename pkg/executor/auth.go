package executor

import (
	"context"
	"fmt"

	"github.com/lmsqa/flowrunner/pkg/core"
	"github.com/lmsqa/flowrunner/pkg/flow"
	"github.com/lmsqa/flowrunner/pkg/session"
)

// LoginAuthenticator authenticates a session by running a login workflow.
// The workflow's final step is the post-login indicator; its failure (with the
// diagnostic snapshot it captured) becomes an AuthenticationFailed error.
type LoginAuthenticator struct {
	Executor *Executor
	Workflow flow.Workflow
}

// Authenticate runs the login workflow against s.
func (a LoginAuthenticator) Authenticate(ctx context.Context, s *session.Session) error {
	report := a.Executor.Run(ctx, s, a.Workflow)
	if report.Success {
		return nil
	}

	var cause error = fmt.Errorf("%s", report.Error)
	if report.Failure != nil {
		cause = report.Failure
	}
	return core.ErrAuthenticationFailed.
		WithMessage(fmt.Sprintf("login workflow %q failed", report.Name)).
		WithCause(cause)
}

var _ session.Authenticator = LoginAuthenticator{}
