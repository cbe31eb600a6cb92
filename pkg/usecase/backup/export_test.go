package backup

import "os"

func WithWriteFile(fn func(path string, data []byte, perm os.FileMode) error) Option {
	return func(uc *UseCase) {
		uc.writeFile = fn
	}
}
