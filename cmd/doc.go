// Package cmd provides the command-line interface for devloop, the live
// development server for Compose web projects.
//
// Commands:
//
//	serve (dev)  Build, serve the bundle and reload browsers on every change
//	watch        Rebuild on every change without serving
//	config       Show or validate the effective configuration
//	version      Print build information
//
// Configuration is read from .devloop.yml in the working directory, the file
// named by --config or DEVLOOP_CONFIG_FILE, DEVLOOP_<SECTION>_<KEY> environment
// variables and command flags, in increasing order of precedence.
package cmd
