// Package config provides the options shared by every domkit helper.
//
// Options are an in-memory value passed at construction time (functional
// options) and replaceable afterwards through Configure on each helper. The
// CLI and the inspector can also read them from a JSON or YAML file.
//
// # Configuration File Structure
//
//	{
//	  "enableLogging": true,
//	  "autoCleanup": true,
//	  "cleanupInterval": "30s",
//	  "maxCacheSize": 1000,
//	  "debounceDelay": "16ms",
//	  "pollInterval": "100ms"
//	}
//
// # Usage
//
//	opts, err := config.LoadFile("domkit.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	kit := domkit.New(doc, domkit.WithOptions(opts))
package config
