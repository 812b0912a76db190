package main

import "github.com/mmcdole/kinotv/cmd/kinotv/cmd"

func main() {
	cmd.Execute()
}
