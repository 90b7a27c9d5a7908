// elected-scheduler 基于领导者选举的分布式定时任务守护进程.
package main

import (
	"fmt"
	"os"
)

// version 构建时通过 -ldflags 注入.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
