package patch

// Observer receives the events of a run. Callbacks run on the goroutine that
// drove the transition, after the orchestrator released its lock, so they may
// call back into the orchestrator.
type Observer interface {
	OnTotalSizeKnown(s Snapshot)
	OnProgress(s Snapshot)
	OnUpToDate(s Snapshot)
	OnSucceeded(s Snapshot)
	OnFailed(s Snapshot, err error)
}

// NopObserver ignores every event. Embed it to implement only some callbacks.
type NopObserver struct{}

func (NopObserver) OnTotalSizeKnown(Snapshot) {}
func (NopObserver) OnProgress(Snapshot)       {}
func (NopObserver) OnUpToDate(Snapshot)       {}
func (NopObserver) OnSucceeded(Snapshot)      {}
func (NopObserver) OnFailed(Snapshot, error)  {}

// Observers fans every event out in order.
type Observers []Observer

func (o Observers) OnTotalSizeKnown(s Snapshot) {
	for _, obs := range o {
		obs.OnTotalSizeKnown(s)
	}
}

func (o Observers) OnProgress(s Snapshot) {
	for _, obs := range o {
		obs.OnProgress(s)
	}
}

func (o Observers) OnUpToDate(s Snapshot) {
	for _, obs := range o {
		obs.OnUpToDate(s)
	}
}

func (o Observers) OnSucceeded(s Snapshot) {
	for _, obs := range o {
		obs.OnSucceeded(s)
	}
}

func (o Observers) OnFailed(s Snapshot, err error) {
	for _, obs := range o {
		obs.OnFailed(s, err)
	}
}
