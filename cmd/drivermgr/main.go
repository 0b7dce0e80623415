package main

import "drivermgr/internal/cli"

func main() {
	cli.Execute()
}
