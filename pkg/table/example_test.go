package table_test

import (
	"context"
	"fmt"
	"os"

	"github.com/srediag/shmtable/pkg/table"
)

func Example() {
	ctx := context.Background()
	name := fmt.Sprintf("/shmtable_example_%d", os.Getpid())

	owner, err := table.Create(ctx, name, 3, 0)
	if err != nil {
		fmt.Println("create:", err)
		return
	}
	defer owner.Destroy()

	peer, err := table.Attach(ctx, name)
	if err != nil {
		fmt.Println("attach:", err)
		return
	}
	defer peer.Detach()

	// callers hold the mutex semaphore around these in real use
	_ = owner.Insert(4)
	_ = owner.Insert(9)
	item, _ := peer.Remove()
	fmt.Println(item, peer.Snapshot().Count)
	// Output: 4 1
}
