package engine

// ComposeCallbacks merges two callback sets into one that notifies both, in
// order. Error-returning callbacks abort on the first error, so a failure in
// the first set suppresses the second.
func ComposeCallbacks(first LifecycleCallbacks, second LifecycleCallbacks) LifecycleCallbacks {
	onBacktestStart := OnBacktestStartCallback(func(totalRuns int) error {
		if first.OnBacktestStart != nil {
			if err := (*first.OnBacktestStart)(totalRuns); err != nil {
				return err
			}
		}

		if second.OnBacktestStart != nil {
			return (*second.OnBacktestStart)(totalRuns)
		}

		return nil
	})

	onBacktestEnd := OnBacktestEndCallback(func(err error) {
		if first.OnBacktestEnd != nil {
			(*first.OnBacktestEnd)(err)
		}

		if second.OnBacktestEnd != nil {
			(*second.OnBacktestEnd)(err)
		}
	})

	onRunStart := OnRunStartCallback(func(runID string, pair string, totalDataPoints int) error {
		if first.OnRunStart != nil {
			if err := (*first.OnRunStart)(runID, pair, totalDataPoints); err != nil {
				return err
			}
		}

		if second.OnRunStart != nil {
			return (*second.OnRunStart)(runID, pair, totalDataPoints)
		}

		return nil
	})

	onRunEnd := OnRunEndCallback(func(runID string, pair string, resultFolderPath string) {
		if first.OnRunEnd != nil {
			(*first.OnRunEnd)(runID, pair, resultFolderPath)
		}

		if second.OnRunEnd != nil {
			(*second.OnRunEnd)(runID, pair, resultFolderPath)
		}
	})

	onProcessData := OnProcessDataCallback(func(current int, total int) error {
		if first.OnProcessData != nil {
			if err := (*first.OnProcessData)(current, total); err != nil {
				return err
			}
		}

		if second.OnProcessData != nil {
			return (*second.OnProcessData)(current, total)
		}

		return nil
	})

	return LifecycleCallbacks{
		OnBacktestStart: &onBacktestStart,
		OnBacktestEnd:   &onBacktestEnd,
		OnRunStart:      &onRunStart,
		OnRunEnd:        &onRunEnd,
		OnProcessData:   &onProcessData,
	}
}
