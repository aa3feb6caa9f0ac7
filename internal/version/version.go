package version

// Version is the current version of stageload.
// Can be overridden at build time with -ldflags "-X ...version.Version=..."
var Version = "0.3.0"

// Name is the application name.
const Name = "stageload"

// Description is a short description of the application.
const Description = "Stage CSV and JSON files from a directory into database tables"
