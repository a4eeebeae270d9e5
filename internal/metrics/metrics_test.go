package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSubscriptionGaugeBalances(t *testing.T) {
	before := testutil.ToFloat64(subscriptions)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SubscriptionOpened()
			SubscriptionClosed()
		}()
	}
	SubscriptionOpened()
	wg.Wait()

	if got := testutil.ToFloat64(subscriptions); got != before+1 {
		t.Errorf("subscriptions = %v, want %v", got, before+1)
	}
	SubscriptionClosed()
}
