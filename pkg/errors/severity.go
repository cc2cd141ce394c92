package errors

import "context"

// Severity classifies how a failing step affects the operation it belongs to.
type Severity string

const (
	// SeverityCritical failures abort the operation and reach the caller.
	SeverityCritical Severity = "critical"
	// SeverityBestEffort failures are reported and then dropped.
	SeverityBestEffort Severity = "best-effort"
)

// Reporter receives best-effort failures. *logger.Logger satisfies it through
// a small adapter in the calling package.
type Reporter func(ctx context.Context, step string, err error)

// Step is one unit of an orchestration with an explicit severity.
type Step struct {
	Name     string
	Severity Severity
	Run      func(ctx context.Context) error
}

// RunStep executes step and applies its severity policy. Critical failures are
// returned unchanged. Best-effort failures go to report and nil is returned.
func RunStep(ctx context.Context, step Step, report Reporter) error {
	if step.Run == nil {
		return nil
	}
	err := step.Run(ctx)
	if err == nil {
		return nil
	}
	if step.Severity == SeverityBestEffort {
		if report != nil {
			report(ctx, step.Name, err)
		}
		return nil
	}
	return err
}
