// Package dispatch provides the invocation primitives underneath the event bus.
//
// # Executor
//
// The Executor runs one handler invocation, recovers from panics, and records
// the outcome in a Result. A panic whose value implements Unwinder is not
// recovered: it is re-raised so that control-flow unwinding started deeper in
// the call stack (for example a failing terminal action below a chain of
// yielding handlers) keeps travelling up to its owner.
//
//	executor := dispatch.NewExecutor(
//	    dispatch.WithExecutorPanicHandler(func(panicValue any, stack []byte) {
//	        logger.Error("handler panic", "value", panicValue)
//	    }),
//	)
//	result := executor.Execute(ctx, func(ctx context.Context) error {
//	    return handler.Handle(ctx, ev, y)
//	})
//
// # Pool
//
// The Pool runs jobs on a fixed set of worker goroutines with a bounded queue.
// The bus uses it to run asynchronous events away from the coordinator.
//
//	pool := dispatch.NewPool(dispatch.WithWorkerCount(4))
//	if err := pool.Start(); err != nil {
//	    return err
//	}
//	defer pool.Stop(context.Background())
//
//	err := pool.Submit(ctx, func(ctx context.Context) { ... })
//	if errors.Is(err, dispatch.ErrQueueFull) {
//	    // dropped
//	}
package dispatch
