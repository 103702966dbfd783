// Package table provides the shared table segment exchanged between the
// producer and the consumer process.
//
// The segment is a fixed 24 byte layout, compatible with the C struct
//
//	struct SharedTable {
//	    int  items[2];
//	    int  count;
//	    int  totalProduced;
//	    int  maxItems;
//	    bool producerDone;
//	};
//
// The producer creates and finally destroys the segment, the consumer only
// attaches and detaches. Insert, Remove, SetProducerDone and Snapshot must be
// called while holding the mutex semaphore; MaxItems, ProducerDone, Count and
// TotalProduced are safe to call at any time and serve as loop hints only.
//
// Example usage:
//
//	tbl, err := table.Create(ctx, table.DefaultName, 10, 0)
//	// ...
//	defer tbl.Destroy()
package table
