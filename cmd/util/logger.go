package util

import "github.com/lni/dragonboat/v4/logger"

var plog = logger.GetLogger("cli")
