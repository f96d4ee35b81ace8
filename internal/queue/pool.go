package queue

import "time"

// work is one worker of the pool: it asks the dispatcher for a job, runs it
// and reports completion until the manager stops.
func (m *Manager) work() {
	defer m.wg.Done()

	respCh := make(chan *Job, 1)
	for {
		select {
		case m.requestCh <- respCh:
		case <-m.ctx.Done():
			return
		}

		var job *Job
		select {
		case job = <-respCh:
		case <-m.ctx.Done():
			// A job handed over just before shutdown is failed here.
			select {
			case job = <-respCh:
				job.finish(ErrQueueStopped)
			default:
			}
			return
		}

		m.process(job)

		select {
		case m.completeCh <- job:
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) process(job *Job) {
	if err := job.ctx.Err(); err != nil {
		job.finish(err)
		return
	}
	if m.observer != nil {
		m.observer.ObserveQueueWait(time.Since(job.EnqueuedAt))
	}
	job.finish(runJob(job, m.panicHandler))
}
