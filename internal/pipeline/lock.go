package pipeline

import "sync"

// topicLocks hands out a stable *sync.RWMutex per (assistant_id, topic_id),
// stored in a sync.Map of lazily created entries. Turns 1-6 hold
// the writer lock end-to-end; background_process releases it before running
// and only reacquires it around the final save.
type topicLocks struct {
	locks sync.Map // key string -> *sync.RWMutex
}

func (t *topicLocks) get(assistantID, topicID string) *sync.RWMutex {
	key := assistantID + "\x00" + topicID
	v, _ := t.locks.LoadOrStore(key, &sync.RWMutex{})
	return v.(*sync.RWMutex)
}
