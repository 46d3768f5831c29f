package types

// Version is the canonical project version. The CLI, the journal record
// schema, and the run-summary event schema all report this constant.
const Version = "0.1.0"
