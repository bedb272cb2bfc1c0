/*
Package config finds, parses and validates hoist configuration.

	            +-------------+
	            |   Config    |
	            |  (bucket)   |
	            +------+------+
	                   |
	   +---------+-----+-----+-----------+
	   |         |           |           |
	+--+---+ +---+--+  +-----+-----+ +---+---+
	| YAML | | HCL  |  | hoist.json| |  env  |
	+------+ +------+  | gcloud.json| +-------+
	                   +-----------+

🔄 Flow:
1. Load .env next to the publish root and parse HOIST_* variables
2. With HOIST_EMULATE set, derive the bucket from the emulator url
3. Otherwise search upward for hoist.{yaml,yml,hcl,json} or gcloud.json
4. Apply environment overrides, then Validate to fill defaults

A missing file without HOIST_EMULATE is ErrConfigMissing, the only
configuration error that callers are expected to branch on.

🔍 Example:

	cfg, err := config.Resolve(ctx, "./public")
	if errors.Is(err, config.ErrConfigMissing) {
		// tell the user to create hoist.yaml
	}
*/
package config
