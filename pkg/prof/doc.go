// Package prof records CPU and heap profiles of sdspi commands.
//
// Profiling is compiled in only with the "profile" build tag:
//
//	go build -tags profile ./cmd/sdspi
//	sdspi --cpuprofile=cpu.prof -i card.img verify 0 1024
//
// Without the tag every function is a no-op and [Enabled] reports false,
// so call sites stay in place at no cost.
//
// CPU profiling streams samples until stopped:
//
//	if err := prof.StartCPU("cpu.prof"); err != nil {
//	    return err
//	}
//	defer prof.StopCPU()
//
// A heap profile is a snapshot written by [WriteHeap].
package prof
