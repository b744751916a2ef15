// Package job implements the attach/detach reconciliation of dynamic item
// sets.
//
// For each item set the Reconciler compares the items currently attached
// with the items matching its saved query, and the Applier writes the
// difference in bounded chunks. AttachItemsToItemSets drives both over the
// targeted item sets, one at a time.
//
// Two write modes exist. Full mode goes through the resource service item by
// item, so host lifecycle hooks run, and both attaches and detaches. Direct
// mode bulk-inserts links for every matching item and never detaches.
package job
