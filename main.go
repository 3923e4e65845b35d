package main

import "video-music-remover/cmd"

func main() {
	cmd.Execute()
}
