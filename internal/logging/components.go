package logging

// Component constants for structured logging. These are used as the
// "component" attribute and rendered as bracketed prefixes by
// ComponentTintHandler (e.g. "[QUEUE]", "[PIPELINE]").
const (
	ComponentStartup  = "startup"
	ComponentQueue     = "queue"
	ComponentBlob      = "blob"
	ComponentVideoTool = "videotool"
	ComponentBrowser   = "browser"
	ComponentHME       = "hme"
	ComponentRecorder  = "recorder"
	ComponentPipeline  = "pipeline"
	ComponentWorker    = "worker"
	ComponentDatabase  = "database"
	ComponentConfig    = "config"
	ComponentHealth    = "health"
	ComponentCleanup   = "cleanup"
)
