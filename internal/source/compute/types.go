package compute

// Runtimes past their upstream end-of-support date. Functions still on one
// get a snapshot issue raised for them.
var deprecatedRuntimes = map[string]struct{}{
	"python2.7":     {},
	"python3.6":     {},
	"python3.7":     {},
	"nodejs10.x":    {},
	"nodejs12.x":    {},
	"nodejs14.x":    {},
	"ruby2.5":       {},
	"dotnetcore2.1": {},
	"go1.x":         {},
}

// DeprecatedRuntime reports whether the named runtime is past end of
// support.
func DeprecatedRuntime(runtime string) bool {
	_, ok := deprecatedRuntimes[runtime]
	return ok
}
