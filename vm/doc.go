// Package vm implements api.VM over golang.org/x/sys/unix: anonymous
// mmap/munmap for chunk reservation, and mprotect/madvise for the three
// purge strategies. It is the only package in memfit that touches a raw
// syscall.
package vm
