package converter

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nconklindev/csvpipe/internal/config"
)

// TimestampLayout is the DD-MM-YYYY_HH-MM-SS suffix of output names.
const TimestampLayout = "02-01-2006_15-04-05"

// OutputPath derives the output file for input: same directory,
// {name}_{timestamp}.csv. With the unique policy an existing file gets a
// numeric suffix instead of being replaced.
func OutputPath(input string, now time.Time, policy string) (string, error) {
	dir := filepath.Dir(input)
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		// dotfiles like ".csv" have no extension to strip
		stem = base
	}

	name := stem + "_" + now.Format(TimestampLayout)
	out := filepath.Join(dir, name+".csv")

	if policy == config.CollisionUnique {
		for n := 2; ; n++ {
			_, err := os.Stat(out)
			if errors.Is(err, fs.ErrNotExist) {
				break
			}
			if err != nil {
				return "", ioError(out, err)
			}
			out = filepath.Join(dir, fmt.Sprintf("%s_%d.csv", name, n))
		}
	}

	if out == input {
		return "", ioError(out, errors.New("output path would overwrite the input file"))
	}

	return out, nil
}

// writeAtomic streams into a temp file next to path and renames it into
// place once fill succeeds. On any failure the temp file is removed and
// path is left untouched.
func writeAtomic(path string, fill func(w *bufio.Writer) error) (err error) {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return ioError(path, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	w := bufio.NewWriter(f)
	if err = fill(w); err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return ioError(path, err)
	}
	if err = f.Close(); err != nil {
		return ioError(path, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return ioError(path, err)
	}
	return nil
}
