package apps

import (
	"bytes"

	"kernos/pkg/mm"
	"kernos/pkg/ulib"
)

const mmapBase = 0x10000000

func yieldApp(env *ulib.Env) int {
	pid := env.GetPid()
	for i := 0; i < 3; i++ {
		env.Printf("Hello, I am process %d, iteration %d.\n", pid, i)
		env.Yield()
	}
	env.Printf("yield pass.\n")
	return 0
}

func exitCodeApp(env *ulib.Env) int {
	const code = 42
	env.Printf("exit with code %d\n", code)
	env.Exit(code)
	return code
}

func mmapApp(env *ulib.Env) int {
	const length = 2 * mm.PageSize
	if env.Mmap(mmapBase, length, 3) != 0 {
		env.Printf("mmap failed\n")
		return 1
	}
	for va := uint64(mmapBase); va < mmapBase+length; va += 8 {
		env.StoreUint64(va, va)
	}
	for va := uint64(mmapBase); va < mmapBase+length; va += 8 {
		if got := env.LoadUint64(va); got != va {
			env.Printf("read back %#x at %#x\n", got, va)
			return 1
		}
	}
	if env.Munmap(mmapBase, length) != 0 {
		env.Printf("munmap failed\n")
		return 1
	}
	if env.Munmap(mmapBase, length) != -1 {
		env.Printf("munmap of an unmapped range succeeded\n")
		return 1
	}
	env.Printf("Test mmap OK!\n")
	return 0
}

func mmapOverlapApp(env *ulib.Env) int {
	if env.Mmap(mmapBase, 2*mm.PageSize, 3) != 0 {
		env.Printf("mmap failed\n")
		return 1
	}
	env.Store(mmapBase, []byte("kept"))
	if env.Mmap(mmapBase+mm.PageSize, 2*mm.PageSize, 1) != -1 {
		env.Printf("overlapping mmap succeeded\n")
		return 1
	}
	if env.Mmap(mmapBase, mm.PageSize, 0) != -1 || env.Mmap(mmapBase+3*mm.PageSize, mm.PageSize, 8) != -1 {
		env.Printf("mmap with bad port succeeded\n")
		return 1
	}
	buf := make([]byte, 4)
	env.Load(mmapBase, buf)
	if !bytes.Equal(buf, []byte("kept")) {
		env.Printf("first mapping changed\n")
		return 1
	}
	env.Printf("Test mmap overlap OK!\n")
	return 0
}

func munmapPartialApp(env *ulib.Env) int {
	if env.Mmap(mmapBase, mm.PageSize, 3) != 0 {
		env.Printf("mmap failed\n")
		return 1
	}
	env.StoreUint64(mmapBase, 7)
	if env.Munmap(mmapBase, 2*mm.PageSize) != -1 {
		env.Printf("partial munmap succeeded\n")
		return 1
	}
	// still mapped, so this must not fault
	if env.LoadUint64(mmapBase) != 7 {
		env.Printf("mapped page lost its contents\n")
		return 1
	}
	if env.Munmap(mmapBase, mm.PageSize) != 0 {
		env.Printf("munmap failed\n")
		return 1
	}
	env.Printf("Test munmap partial OK!\n")
	return 0
}

func setPriorityApp(env *ulib.Env) int {
	for _, prio := range []int64{0, 1, -5} {
		if env.SetPriority(prio) != -1 {
			env.Printf("set_priority(%d) succeeded\n", prio)
			return 1
		}
	}
	for _, prio := range []int64{2, 10, 255} {
		if got := env.SetPriority(prio); got != prio {
			env.Printf("set_priority(%d) = %d\n", prio, got)
			return 1
		}
	}
	env.Printf("Test set_priority OK!\n")
	return 0
}

func pageFaultApp(env *ulib.Env) int {
	env.Printf("store to an unmapped page\n")
	env.StoreUint64(0, 1)
	env.Printf("page fault did not kill the process\n")
	return 0
}

func spawnTreeApp(env *ulib.Env) int {
	for i := 0; i < 2; i++ {
		if env.Spawn("yield") < 0 {
			env.Printf("spawn failed\n")
			return 1
		}
	}
	env.Printf("spawn_tree leaves its children behind\n")
	return 0
}
