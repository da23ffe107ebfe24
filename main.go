package main

import "medialib/cmd"

func main() {
	cmd.Execute()
}
