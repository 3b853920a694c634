package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/dmitrijs2005/drivekeeper/internal/client/apiclient"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/endpoint"
	"github.com/google/uuid"
)

type storedFile struct {
	header   FileHeader
	payloads map[string][]byte
}

// fakeAPI is an in-memory drive host speaking plaintext; the envelope layer
// is covered by the apiclient tests.
type fakeAPI struct {
	API

	session *apiclient.Session

	mu      sync.Mutex
	files   []*storedFile
	version int
	calls   map[string]int
	ranges  []string
	last    url.Values

	// ignoreRange makes payload reads return the whole body with 200.
	ignoreRange bool
}

func newFakeAPI(secret []byte) *fakeAPI {
	s, err := apiclient.NewSession("frodo.dotyou.cloud", endpoint.Owner, secret, "tok")
	if err != nil {
		panic(err)
	}
	return &fakeAPI{session: s, calls: map[string]int{}}
}

func (f *fakeAPI) Session() *apiclient.Session { return f.session }

func (f *fakeAPI) nextTag() string {
	f.version++
	return "v" + strconv.Itoa(f.version)
}

func jsonResponse(v any) (*apiclient.Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &apiclient.Response{StatusCode: http.StatusOK, Body: b}, nil
}

func statusErr(code int, sentinel error) error {
	return &apiclient.StatusError{StatusCode: code, Err: sentinel}
}

func (f *fakeAPI) find(v url.Values) (*storedFile, error) {
	id, err := uuid.Parse(v.Get(ParamFileID))
	if err != nil {
		return nil, statusErr(http.StatusBadRequest, common.ErrBadRequest)
	}
	for _, sf := range f.files {
		if sf.header.FileID == id {
			return sf, nil
		}
	}
	return nil, statusErr(http.StatusNotFound, common.ErrNotFound)
}

func (f *fakeAPI) Get(ctx context.Context, path string, params url.Values, opts ...apiclient.CallOption) (*apiclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++
	f.last = params

	switch path {
	case PathFileHeader, PathTransitHeader:
		sf, err := f.find(params)
		if err != nil {
			return nil, err
		}
		return jsonResponse(sf.header)

	case PathQueryBatch, PathTransitBatch:
		q, err := ParseQueryParams(params)
		if err != nil {
			return nil, statusErr(http.StatusBadRequest, common.ErrBadRequest)
		}
		start := 0
		if c := params.Get(ParamCursorState); c != "" {
			start, _ = strconv.Atoi(c)
		}
		res := QueryBatchResult{CursorState: strconv.Itoa(start)}
		for i := start; i < len(f.files) && len(res.Results) < q.MaxRecords; i++ {
			res.Results = append(res.Results, f.files[i].header)
			res.CursorState = strconv.Itoa(i + 1)
		}
		return jsonResponse(res)
	}
	return nil, statusErr(http.StatusNotFound, common.ErrNotFound)
}

func (f *fakeAPI) Post(ctx context.Context, path string, body any, opts ...apiclient.CallOption) (*apiclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++

	switch path {
	case PathUpload:
		ins := body.(UploadInstructions)
		sf := &storedFile{payloads: map[string][]byte{}}
		sf.header = FileHeader{
			FileID:                         uuid.New(),
			FileState:                      FileStateActive,
			FileMetadata:                   ins.FileMetadata,
			SharedSecretEncryptedKeyHeader: ins.EncryptedKeyHeader,
			ServerMetadata:                 &ServerMetadata{AccessControlList: ins.AccessControlList},
		}
		sf.header.FileMetadata.VersionTag = f.nextTag()
		for _, p := range ins.Payloads {
			sf.payloads[p.Descriptor.Key] = p.Data
		}
		f.files = append(f.files, sf)
		return jsonResponse(UploadResponse{FileID: sf.header.FileID, NewVersionTag: sf.header.FileMetadata.VersionTag})

	case PathUpdate:
		ins := body.(UpdateInstructions)
		sf, err := f.find(url.Values{ParamFileID: {ins.FileID.String()}})
		if err != nil {
			return nil, err
		}
		if sf.header.FileMetadata.VersionTag != ins.VersionTag {
			return nil, statusErr(http.StatusConflict, common.ErrVersionConflict)
		}
		sf.header.FileMetadata.AppData = ins.AppData
		if ins.EncryptedKeyHeader != nil {
			sf.header.SharedSecretEncryptedKeyHeader = ins.EncryptedKeyHeader
		}
		sf.header.FileMetadata.VersionTag = f.nextTag()
		return jsonResponse(UpdateResponse{NewVersionTag: sf.header.FileMetadata.VersionTag})
	}
	return nil, statusErr(http.StatusNotFound, common.ErrNotFound)
}

func (f *fakeAPI) GetRange(ctx context.Context, path string, params url.Values, r *apiclient.ByteRange, opts ...apiclient.CallOption) (*apiclient.RangeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++

	sf, err := f.find(params)
	if err != nil {
		return nil, err
	}
	data, ok := sf.payloads[params.Get(ParamPayloadKey)]
	if !ok {
		return nil, statusErr(http.StatusNotFound, common.ErrNotFound)
	}

	total := int64(len(data))
	if r == nil || f.ignoreRange {
		return &apiclient.RangeResponse{Body: data, Start: 0, End: total - 1, Total: total}, nil
	}
	f.ranges = append(f.ranges, r.Header())

	end := total - 1
	if r.Length > 0 && r.End() < end {
		end = r.End()
	}
	if r.Start > end {
		return nil, statusErr(http.StatusRequestedRangeNotSatisfiable, fmt.Errorf("range"))
	}
	return &apiclient.RangeResponse{Body: data[r.Start : end+1], Start: r.Start, End: end, Total: total, Partial: true}, nil
}

