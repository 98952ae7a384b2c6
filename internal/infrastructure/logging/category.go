package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	NATS            Category = "NATS"
	Redis           Category = "Redis"
	Matrix          Category = "Matrix"
	Bus             Category = "Bus"
	Session         Category = "Session"
	Relay           Category = "Relay"
	Assistant       Category = "Assistant"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Bus
	Publish   SubCategory = "Publish"
	Subscribe SubCategory = "Subscribe"
	Decode    SubCategory = "Decode"

	// Session
	Provision SubCategory = "Provision"
	Probe     SubCategory = "Probe"
	Sync      SubCategory = "Sync"
	Invite    SubCategory = "Invite"
	Deliver   SubCategory = "Deliver"
	Remove    SubCategory = "Remove"
	List      SubCategory = "List"

	// Relay
	Route SubCategory = "Route"
	Reply SubCategory = "Reply"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	BodySize     ExtraKey = "BodySize"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	ErrorMessage ExtraKey = "ErrorMessage"
	Subject      ExtraKey = "Subject"
	Service      ExtraKey = "Service"
	EventID      ExtraKey = "EventID"
	Identity     ExtraKey = "Identity"
	RoomID       ExtraKey = "RoomID"
	Instance     ExtraKey = "Instance"
)
