// Package registry builds the immutable application registry.
//
// The registry is the ordered list of application descriptors the shell
// knows about, plus an import map used to resolve module specifiers.
//
// Components:
//   - Manifest: the on-disk shape (YAML, TOML or JSON)
//   - Loader: reads one manifest file or a directory of them
//   - Registry: validated descriptors with strategies and always-on
//     membership computed once at build time
//
// Always-on and format-adaptive membership accept doublestar patterns, so
// "@org/shell-*" pins every shell chrome application at once.
//
// Example manifest:
//
//	always_on: ["@org/navbar"]
//	format_adaptive: ["@org/legacy-*"]
//	imports:
//	  react: https://cdn.example.com/react.js
//	apps:
//	  - name: "@org/navbar"
//	    strategy: global-script
//	    global: navbar
//	    urls:
//	      local: http://localhost:9001/navbar.js
//	      production: https://cdn.example.com/navbar.js
//
// Example Usage:
//
//	m, err := registry.NewLoader(logger).Load("apps.yaml")
//	reg, err := registry.Build(m, registry.Options{Env: types.EnvLocal})
//	url, ok := reg.Resolve("@org/navbar")
package registry
