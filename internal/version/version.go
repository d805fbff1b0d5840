package version

// Version identifies the messagevault build.
const Version = "0.3.0.dev1"
