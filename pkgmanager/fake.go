package pkgmanager

import "context"

// Fake is an in-memory PackageManager for tests. Each field is an
// optional stubbed outcome; a nil stub yields a clean Result{ExitCode:
// 0} and no error. Install, Uninstall, and Update calls are also
// recorded for assertions; Version calls are not.
type Fake struct {
	InstallResult   Result
	InstallErr      error
	UninstallResult Result
	UninstallErr    error
	UpdateResult    Result
	UpdateErr       error
	VersionResult   Result
	VersionErr      error

	InstallCalls   []string
	UninstallCalls []string
	UpdateCalls    []string
}

func (f *Fake) Install(_ context.Context, target string) (Result, error) {
	f.InstallCalls = append(f.InstallCalls, target)
	return f.InstallResult, f.InstallErr
}

func (f *Fake) Uninstall(_ context.Context, name string) (Result, error) {
	f.UninstallCalls = append(f.UninstallCalls, name)
	return f.UninstallResult, f.UninstallErr
}

func (f *Fake) Update(_ context.Context, name string) (Result, error) {
	f.UpdateCalls = append(f.UpdateCalls, name)
	return f.UpdateResult, f.UpdateErr
}

func (f *Fake) Version(_ context.Context) (Result, error) {
	return f.VersionResult, f.VersionErr
}
