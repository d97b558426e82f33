// Package audit defines the durable decision log: the stored Record form of a
// decision, the Storage and Exporter interfaces, queries over stored records,
// and the error types shared by the audit subpackages.
//
// The subpackages provide the moving parts:
//
//	recorder   asynchronous Sink that redacts, hashes, and stores decisions
//	storage    memory, SQLite (cgo and pure Go), and PostgreSQL backends
//	retention  age and count based pruning on a cron schedule
//	export     JSON and CSV exporters
//
// A typical wiring:
//
//	store, err := storage.Open(storage.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	rec := recorder.NewRecorder(store, recorder.DefaultConfig())
//	defer rec.Close()
//
//	orch, err := orchestrator.New(v, registry, orchestrator.WithAuditSink(rec))
package audit
