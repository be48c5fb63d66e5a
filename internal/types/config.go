package types

type RunMode string

const (
	// ModeLocal is the mode for running the API server locally
	ModeLocal RunMode = "local"
	// ModeAPI is the mode for running just the API server
	ModeAPI RunMode = "api"
	// ModeAWSLambdaAPI is the mode for running the API server in AWS Lambda
	ModeAWSLambdaAPI RunMode = "aws_lambda_api"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// StoreDriver selects the backing implementation of the license repository
type StoreDriver string

const (
	StoreDriverSupabase StoreDriver = "supabase"
	StoreDriverPostgres StoreDriver = "postgres"
	StoreDriverMemory   StoreDriver = "memory"
)

// EmailProvider selects the transport used to deliver license emails
type EmailProvider string

const (
	EmailProviderSMTP   EmailProvider = "smtp"
	EmailProviderResend EmailProvider = "resend"
)
