package progress

import "io"

// Reader wraps an io.Reader, forwards every chunk size to OnRead and calls
// OnReport roughly every interval bytes and once more at EOF.
type Reader struct {
	Reader   io.Reader
	Total    int64
	OnRead   func(n int64)
	OnReport func(read int64, total int64)

	read           int64 // cumulative total
	sinceReport    int64 // bytes since last report
	reportInterval int64 // bytes
}

func NewReader(r io.Reader, total int64, interval int64, onRead func(n int64), onReport func(read int64, total int64)) *Reader {
	return &Reader{
		Reader:         r,
		Total:          total,
		OnRead:         onRead,
		OnReport:       onReport,
		reportInterval: interval,
	}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		pr.read += int64(n)
		pr.sinceReport += int64(n)

		if pr.OnRead != nil {
			pr.OnRead(int64(n))
		}

		if pr.reportInterval > 0 && pr.sinceReport >= pr.reportInterval {
			pr.report()
		}
	}

	if err == io.EOF && pr.sinceReport > 0 {
		pr.report()
	}

	return n, err
}

// BytesRead returns how many bytes went through the reader.
func (pr *Reader) BytesRead() int64 {
	return pr.read
}

func (pr *Reader) report() {
	if pr.OnReport != nil {
		pr.OnReport(pr.read, pr.Total)
	}

	pr.sinceReport = 0
}
