// Package retention provides scheduled pruning of old cost records.
//
// The Pruner deletes cost records older than the configured retention
// window. Alerts and the budget are never pruned. Pruning runs on a cron
// schedule (e.g. daily at 3 AM) and can also be triggered manually.
//
//	pruner := retention.NewPruner(store, &retention.Config{
//	    RetentionDays: 90,
//	    PruneSchedule: "0 3 * * *",
//	})
//	if err := pruner.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer pruner.Stop()
//
// A RetentionDays of 0 keeps records forever; an empty PruneSchedule
// disables the scheduler while leaving manual Prune calls available.
package retention
