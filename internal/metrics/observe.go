package metrics

// JobEnqueued records the enqueuing of a delivery job.
func (m *Metrics) JobEnqueued() {
	if m != nil {
		m.JobsEnqueued.Inc()
	}
}

// JobDelivered records the successful completion of a delivery job.
func (m *Metrics) JobDelivered() {
	if m != nil {
		m.JobsDelivered.Inc()
	}
}

// JobRetried records a failed delivery attempt that will be retried.
func (m *Metrics) JobRetried() {
	if m != nil {
		m.JobsRetried.Inc()
	}
}

// JobFailed records the terminal failure of a delivery job.
func (m *Metrics) JobFailed() {
	if m != nil {
		m.JobsFailed.Inc()
	}
}

// UploadAttempted records a single attachment upload attempt.
func (m *Metrics) UploadAttempted(isOpenGroup bool) {
	if m != nil {
		m.UploadAttempts.WithLabelValues(ServerKind(isOpenGroup)).Inc()
	}
}

// UploadFailed records an attachment upload that exhausted its retries.
func (m *Metrics) UploadFailed(isOpenGroup bool) {
	if m != nil {
		m.UploadFailures.WithLabelValues(ServerKind(isOpenGroup)).Inc()
	}
}

// NonDurableSent records the outcome of a non-durable send.
func (m *Metrics) NonDurableSent(err error) {
	if m != nil {
		m.NonDurableSends.WithLabelValues(Result(err)).Inc()
	}
}

// Polled records the outcome of a single open-group poll.
func (m *Metrics) Polled(err error) {
	if m != nil {
		m.Polls.WithLabelValues(Result(err)).Inc()
	}
}

// PollerStarted records that an open-group poller has started.
func (m *Metrics) PollerStarted() {
	if m != nil {
		m.ActivePollers.Inc()
	}
}

// PollerStopped records that an open-group poller has stopped.
func (m *Metrics) PollerStopped() {
	if m != nil {
		m.ActivePollers.Dec()
	}
}
