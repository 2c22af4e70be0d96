package sessionlog

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for initializing a session logger.
type Options struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Path is a functional option to set the log file location.
func Path(p string) Option {
	return func(args *Options) {
		args.Path = p
	}
}

// MaxSizeMB is a functional option which sets the file size in
// megabytes at which the log rotates.
func MaxSizeMB(n int) Option {
	return func(args *Options) {
		args.MaxSizeMB = n
	}
}

// MaxBackups is a functional option which sets how many rotated files
// are kept.
func MaxBackups(n int) Option {
	return func(args *Options) {
		args.MaxBackups = n
	}
}

// MaxAgeDays is a functional option which sets how many days rotated
// files are kept.
func MaxAgeDays(n int) Option {
	return func(args *Options) {
		args.MaxAgeDays = n
	}
}

// Compress is a functional option which enables gzip compression of
// rotated files.
func Compress(on bool) Option {
	return func(args *Options) {
		args.Compress = on
	}
}
