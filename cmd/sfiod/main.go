package main

import "github.com/xtreemfs/xtreemfs-sub008/cmd/sfiod/cmd"

func main() {
	cmd.Execute()
}
