package stage

import "github.com/ulala-x/playhouse/logger"

// ioPool is the shared goroutine pool AsyncBlock dispatches pre onto; unlike
// the stage compute Pool, it has no per-stage pinning since pre callbacks
// must not touch stage state at all.
var ioPool = make(chan func(), 4096)

func init() {
	for i := 0; i < 64; i++ {
		go func() {
			for fn := range ioPool {
				fn()
			}
		}()
	}
}

// AsyncBlock runs pre on the shared I/O pool (spec 4.6: "pre runs off the
// stage thread, for blocking I/O"), then posts post back onto this stage's
// own mailbox so it runs on the stage's single thread with the result of
// pre in hand. pre's return value is passed to post unchanged; if pre
// panics, post is not scheduled and the panic is logged.
func (s *Stage) AsyncBlock(pre func() interface{}, post func(result interface{})) {
	ioPool <- func() {
		result, ok := runPre(s, pre)
		if !ok {
			return
		}
		s.Post(postCallbackEntry{fn: func() { post(result) }})
	}
}

func runPre(s *Stage, pre func() interface{}) (result interface{}, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("stage %d: recovered panic in async pre: %v", s.StageId, r)
			ok = false
		}
	}()
	result = pre()
	ok = true
	return
}
