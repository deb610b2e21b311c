package domain

import "time"

// postStringLen - сколько символов текста выводит String у Post.
const postStringLen = 15

// User - учетная запись внешнего провайдера.
// Сервис знает только ее id и username.
type User struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Username  string    `json:"username" gorm:"type:varchar(150);not null;uniqueIndex"`
	CreatedAt time.Time `json:"-" gorm:"not null;default:now()"`
}

func (u *User) String() string { return u.Username }

// Group - сообщество, в котором публикуются посты.
type Group struct {
	ID          string `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Title       string `json:"title" gorm:"type:varchar(200);not null"`
	Slug        string `json:"slug" gorm:"type:varchar(100);not null;uniqueIndex"`
	Description string `json:"description" gorm:"type:text"`
}

func (g *Group) String() string { return g.Title }

// Post - публикация. AuthorID и PubDate после создания не меняются.
type Post struct {
	ID       string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Text     string    `json:"text" gorm:"type:text;not null"`
	PubDate  time.Time `json:"pubDate" gorm:"not null;index:idx_posts_pub_date,sort:desc"`
	AuthorID string    `json:"authorId" gorm:"type:uuid;not null;index"`
	GroupID  *string   `json:"groupId,omitempty" gorm:"type:uuid;index"`
	// Image - непрозрачная ссылка от хранилища медиа.
	Image *string `json:"image,omitempty" gorm:"type:varchar(255)"`

	Author *User  `json:"-" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"` // только для gorm
	Group  *Group `json:"-" gorm:"foreignKey:GroupID;constraint:OnDelete:SET NULL"` // только для gorm
}

func (p *Post) String() string {
	r := []rune(p.Text)
	if len(r) > postStringLen {
		r = r[:postStringLen]
	}
	return string(r)
}

// Comment привязан к посту. Комментарии только добавляются.
type Comment struct {
	ID       string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	PostID   string    `json:"postId" gorm:"type:uuid;not null;index"`
	AuthorID string    `json:"authorId" gorm:"type:uuid;not null;index"`
	Text     string    `json:"text" gorm:"type:text;not null"`
	Created  time.Time `json:"created" gorm:"not null;index"`

	Post   *Post `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`   // только для gorm
	Author *User `json:"-" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"` // только для gorm
}

func (c *Comment) String() string { return c.Text }

// SelfFollowConstraint - имя ограничения, запрещающего UserID == AuthorID.
const SelfFollowConstraint = "check_not_self_follow"

// Follow - направленная связь: UserID видит посты AuthorID в ленте подписок.
// Пара уникальна, и UserID никогда не равен AuthorID.
type Follow struct {
	ID       string `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID   string `json:"userId" gorm:"type:uuid;not null;uniqueIndex:uniq_follow_pair;check:check_not_self_follow,user_id <> author_id"`
	AuthorID string `json:"authorId" gorm:"type:uuid;not null;uniqueIndex:uniq_follow_pair;index"`

	User   *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`   // только для gorm
	Author *User `json:"-" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"` // только для gorm
}
