// Package pipeline runs documents through a sequence of steps.
//
// A Job carries one document: the assemble step produces its view and
// starts image hydration into the job's surface, the hydrate step waits
// for the images, and the optional page step writes a standalone HTML
// page. Each stage is a Step that receives the job and can modify it.
//
// Design decision: We use a pipeline pattern instead of direct function
// calls so that commands can pick the steps they need (the watch command
// skips the page step, --no-images drops hydration) with consistent
// logging and cancellation between steps.
//
// The BatchProcessor runs one pipeline per document with concurrency
// control using errgroup.
package pipeline
