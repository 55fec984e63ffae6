package main

import "paywatch/internal/cli"

func main() {
	cli.Execute()
}
