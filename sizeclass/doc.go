// Package sizeclass computes the tiny/quantum/sub-page/large/huge size
// classification, the run geometry for each small/sub-page bin, and the
// division-avoidance tables used to turn a within-run byte offset into a
// region index without a general integer division.
//
// The size-class ladder is a sorted slice built in fixed steps (doubling
// for tiny and sub-page classes, adding Quantum for quantum classes) and
// binary-searched to classify a request, the way the teacher package
// searches its block-size ladder (malloc.SuitableSize).
package sizeclass
