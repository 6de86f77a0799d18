package client_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/txn-kv-store/client"
)

// BenchmarkTxnLatency measures BEGIN, SET on two servers and COMMIT over
// loopback, one session per parallel worker.
func BenchmarkTxnLatency(b *testing.B) {
	c := startCluster(b, "A", "B")
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.PanicLevel)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		cl := client.Connect(ctx, logger, "", c.config)
		defer cl.Close()
		key := cl.ID
		for i := 0; pb.Next(); i++ {
			if _, err := cl.Begin(ctx); err != nil {
				b.Error(err)
				return
			}
			v := strconv.Itoa(i)
			cl.Set(ctx, "A."+key, v)
			cl.Set(ctx, "B."+key, v)
			cl.Commit(ctx)
		}
	})
}
