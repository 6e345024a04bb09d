// Package async provides safe concurrent execution primitives for background tasks.
//
// SafeGo runs a function in its own goroutine with a timeout and panic
// recovery; failures are logged through logrus and never reach the caller.
// The API server uses it to deliver password reset mail after the response
// is written.
//
// WorkerPool runs tasks on a fixed set of workers fed by a bounded queue.
// TrySubmit never blocks, which lets request handlers hand off download
// bookkeeping and drop it under load instead of stalling the response:
//
//	pool := async.NewWorkerPool(ctx, 4, 256, "download recorder", 5*time.Second)
//	defer pool.Shutdown(10 * time.Second)
//
//	if err := pool.TrySubmit(task); errors.Is(err, async.ErrPoolFull) {
//		// dropped
//	}
//
// Batch fans a slice out over a temporary pool and collects the errors.
package async
