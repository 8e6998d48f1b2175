package log

import "os"

var exit = os.Exit
