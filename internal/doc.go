// Package internal contains the implementation packages of devloop.
//
//   - watcher: filesystem notifications, path filtering and change coalescing
//   - build: single-flight build runs, log filtering and output publishing
//   - websocket: live reload clients and the broadcast registry
//   - server: static files, the live endpoint and port selection
//   - status: the terminal progress line and startup banner
//   - services: wiring of the above into the serve and watch commands
//   - config, logging, errors, middleware, version: shared infrastructure
package internal
