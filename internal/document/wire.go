package document

// The wire structs mirror the published JSON layout. Pointer fields
// distinguish an absent value from a zero one.

type wireDocument struct {
	ProtocolVersion int         `json:"protocolVersion"`
	Time            *int64      `json:"time"`
	Client          *wireClient `json:"client,omitempty"`
	Profile         wireProfile `json:"profile"`
	Posts           []wirePost  `json:"posts"`
	Replies         []wireReply `json:"replies"`
	LikedPosts      []string    `json:"likedPosts"`
	LikedReplies    []string    `json:"likedReplies"`
	Friends         []string    `json:"friends"`
	Gallery         wireGallery `json:"gallery"`
}

type wireClient struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type wireProfile struct {
	FirstName  *string     `json:"firstName,omitempty"`
	MiddleName *string     `json:"middleName,omitempty"`
	LastName   *string     `json:"lastName,omitempty"`
	BirthDay   *int        `json:"birthDay,omitempty"`
	BirthMonth *int        `json:"birthMonth,omitempty"`
	BirthYear  *int        `json:"birthYear,omitempty"`
	Avatar     *string     `json:"avatar,omitempty"`
	Fields     []wireField `json:"fields"`
}

type wireField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type wirePost struct {
	ID        string  `json:"id"`
	Recipient string  `json:"recipient,omitempty"`
	Time      *int64  `json:"time"`
	Text      *string `json:"text"`
}

type wireReply struct {
	ID   string  `json:"id"`
	Post string  `json:"post"`
	Time *int64  `json:"time"`
	Text *string `json:"text"`
}

type wireGallery struct {
	Albums []wireAlbum `json:"albums"`
	Images []wireImage `json:"images"`
}

type wireAlbum struct {
	ID          string  `json:"id"`
	Parent      string  `json:"parent,omitempty"`
	Title       *string `json:"title"`
	Description string  `json:"description,omitempty"`
	AlbumImage  string  `json:"albumImage,omitempty"`
}

type wireImage struct {
	ID           string `json:"id"`
	Album        string `json:"album"`
	CreationTime *int64 `json:"creationTime"`
	Key          string `json:"key"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	Width        *int   `json:"width"`
	Height       *int   `json:"height"`
}
