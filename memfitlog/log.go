// Package memfitlog is the logging seam memfit's internal packages write
// through: a thin forwarding layer over golog, in the shape of
// bnclabs-gostore's llrb/log.go and bogn/log.go wrappers.
package memfitlog

import golog "github.com/bnclabs/golog"

func Fatalf(format string, v ...interface{}) { golog.Fatalf(format, v...) }
func Errorf(format string, v ...interface{}) { golog.Errorf(format, v...) }
func Warnf(format string, v ...interface{})  { golog.Warnf(format, v...) }
func Infof(format string, v ...interface{})  { golog.Infof(format, v...) }
func Debugf(format string, v ...interface{}) { golog.Debugf(format, v...) }
func Tracef(format string, v ...interface{}) { golog.Tracef(format, v...) }
