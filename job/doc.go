// Package job defines the job entity, its state machine, typed executor
// definitions, and the store interface.
//
// # Job Entity
//
// A [Job] represents a unit of work admitted into the queue. It carries an
// opaque JSON payload, the owning caller identifier, and progresses through
// a state machine:
//
//	queued → running → completed
//	queued → running → failed
//	queued → cancelled
//	running → cancelled
//
// Terminal states are absorbing: the store rejects any further mutation.
//
// # Defining a Job Type
//
// Use [Definition] with a typed handler. The payload is JSON-deserialized
// before the handler runs and the result is JSON-serialized afterwards. The
// handler receives a [ProgressFunc] for percentage progress updates:
//
//	var Backtest = job.NewDefinition("backtest",
//	    func(ctx context.Context, input BacktestInput, report job.ProgressFunc) (BacktestResult, error) {
//	        report(50)
//	        return engine.Run(ctx, input)
//	    },
//	    job.WithTimeout(10*time.Minute),
//	)
//
// # Registry
//
// [Registry] maps job types to type-erased [HandlerFunc] values. Register
// definitions at startup via [RegisterDefinition]. Submitting a job whose
// type has no registered executor is a permanent configuration error.
package job
