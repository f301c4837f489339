package main

import "os"

// Console size changes are not signalled on Windows.
func notifyResize(ch chan<- os.Signal) {}
