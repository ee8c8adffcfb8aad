package version

// Version is the current version of ccbr-report.
// This MUST be incremented for each build that includes changes.
// Use semantic versioning: MAJOR.MINOR.PATCH
const Version = "2.0.0"
